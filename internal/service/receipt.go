package service

import (
	"context"

	"warungpos/backend/internal/receipt"
	"warungpos/backend/internal/store"
)

func (s *Service) BuildReceipt(ctx context.Context, transactionID string) (receipt.Document, error) {
	if transactionID == "" {
		return receipt.Document{}, store.ErrValidation
	}
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return receipt.Document{}, err
	}
	return receipt.ForTransaction(*tx), nil
}

func (s *Service) BuildShiftReport(ctx context.Context, shiftID string) (receipt.Document, error) {
	if shiftID == "" {
		return receipt.Document{}, store.ErrValidation
	}
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return receipt.Document{}, err
	}
	transactions, err := s.repo.ListTransactionsByShift(ctx, shift.ID)
	if err != nil {
		return receipt.Document{}, err
	}
	return receipt.ZReport(*shift, transactions), nil
}
