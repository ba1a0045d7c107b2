package cloudinary

import (
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/google/uuid"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/config"
)

// UploadParams - подписанные параметры прямой загрузки изображения из клиента
type UploadParams struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"api_key"`
	CloudName    string `json:"cloud_name"`
	Folder       string `json:"folder"`
	UploadPreset string `json:"upload_preset"`
	ListingID    string `json:"listing_id"`
}

// CloudinaryService подписывает параметры загрузки изображений объявлений
type CloudinaryService struct {
	cfg config.CloudinaryConfig
	now func() time.Time
}

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg config.CloudinaryConfig) *CloudinaryService {
	return &CloudinaryService{cfg: cfg, now: time.Now}
}

// GenerateUploadParams создаёт параметры для загрузки изображений.
// Изображения одного объявления складываются в папку folder/listingID;
// listingID принимается только в виде UUID.
func (s *CloudinaryService) GenerateUploadParams(listingID string) (*UploadParams, error) {
	if s.cfg.APISecret == "" || s.cfg.APIKey == "" || s.cfg.CloudName == "" {
		return nil, apperrors.Internal("загрузка изображений не настроена", nil)
	}
	if listingID == "" {
		listingID = uuid.NewString()
	} else {
		id, err := uuid.Parse(listingID)
		if err != nil {
			return nil, apperrors.InvalidArg("listing_id должен быть UUID")
		}
		// каноническая форма: папка не зависит от регистра и скобок
		listingID = id.String()
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	folder := path.Join(s.cfg.Folder, listingID)

	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("folder", folder)
	if s.cfg.UploadPreset != "" {
		params.Set("upload_preset", s.cfg.UploadPreset)
	}

	signature, err := api.SignParameters(params, s.cfg.APISecret)
	if err != nil {
		return nil, apperrors.Internal("ошибка подписи параметров загрузки", err)
	}

	return &UploadParams{
		Timestamp:    timestamp,
		Signature:    signature,
		APIKey:       s.cfg.APIKey,
		CloudName:    s.cfg.CloudName,
		Folder:       folder,
		UploadPreset: s.cfg.UploadPreset,
		ListingID:    listingID,
	}, nil
}
