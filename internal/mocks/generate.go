// Package mocks holds gomock doubles for the pipeline's collaborator interfaces.
//
// Regenerate after an interface change with:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	vendor := mocks.NewMockVendor(ctrl)
//	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(handle, nil).Times(1)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=vendor_mock.go mueck/internal/providers/imagevendor Vendor
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=notifier_mock.go mueck/internal/pipeline Notifier
