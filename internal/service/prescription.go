package service

import (
	"context"
	"errors"

	"pharmacy/internal/domain"
	"pharmacy/internal/store"
	"pharmacy/internal/upload"
)

// PrescriptionService uploads prescription documents for cart lines.
type PrescriptionService struct {
	uploader upload.Uploader
}

func NewPrescriptionService(u upload.Uploader) *PrescriptionService {
	return &PrescriptionService{uploader: u}
}

// Upload stores f and attaches its URL to the cart line. When anything fails
// the line keeps its previous prescription state.
func (s *PrescriptionService) Upload(ctx context.Context, ws *Workspace, productID string, f upload.File) (domain.CartLine, error) {
	const op = "PrescriptionService.Upload"
	line, ok := ws.Cart.Snapshot().Line(productID)
	if !ok {
		return domain.CartLine{}, &domain.NotFoundError{Kind: "cart line", ID: productID}
	}
	if !line.RequiresPrescription {
		return domain.CartLine{}, &domain.ValidationError{Fields: map[string]string{"productId": "does not require a prescription"}}
	}
	if err := upload.Validate(f); err != nil {
		ws.UI.Notify(store.ToastError, "Upload failed", err.Error())
		return domain.CartLine{}, err
	}

	url, err := s.uploader.Upload(ctx, f)
	if err != nil {
		var rejected *domain.UploadRejectedError
		if !errors.As(err, &rejected) {
			err = &domain.PersistenceError{Op: op, Err: err}
		}
		ws.UI.Notify(store.ToastError, "Upload failed", "There was an error uploading your prescription. Please try again.")
		return domain.CartLine{}, err
	}

	updated, _ := ws.Cart.AttachPrescription(productID, url).Line(productID)
	ws.UI.Notify(store.ToastSuccess, "Prescription uploaded", "Your prescription has been uploaded successfully.")
	return updated, nil
}
