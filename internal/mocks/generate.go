package mocks

//go:generate mockgen -source=../auth/jwt.go -destination=mock_verifier.go -package=mocks
//go:generate mockgen -source=../notifier/notifier.go -destination=mock_notifier.go -package=mocks
