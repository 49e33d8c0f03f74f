package validator

import (
	"errors"
	"strings"

	"comedor/internal/domain/model"
	"comedor/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")

	// payloadが種別と合っていない
	ErrPayloadMismatch = errors.New("payload does not match kind")
)

type requestValidator struct{}

// Usecaseは interface を依存注入
func NewRequestValidator() usecase.RequestValidator {
	return &requestValidator{}
}

// 依頼作成の入力を検証（存在チェックはusecase側で行う）
func (v *requestValidator) ValidateCreate(in usecase.CreateRequestInput) error {
	switch in.Kind {
	case model.RequestKindEntry:
		if in.Entry == nil || in.Exit != nil || in.Loss != nil {
			return ErrPayloadMismatch
		}
		p := in.Entry
		if strings.TrimSpace(p.Name) == "" || len(p.Name) > 255 {
			return ErrInvalidInput
		}
		if strings.TrimSpace(p.Unit) == "" {
			return ErrInvalidInput
		}
		if p.Quantity <= 0 {
			return ErrInvalidInput
		}
		return nil

	case model.RequestKindExit:
		if in.Exit == nil || in.Entry != nil || in.Loss != nil {
			return ErrPayloadMismatch
		}
		p := in.Exit
		if p.ProductID <= 0 || p.Quantity <= 0 {
			return ErrInvalidInput
		}
		if p.Students < 0 || p.Teachers < 0 {
			return ErrInvalidInput
		}
		return nil

	case model.RequestKindLoss:
		if in.Loss == nil || in.Entry != nil || in.Exit != nil {
			return ErrPayloadMismatch
		}
		p := in.Loss
		if p.BatchID <= 0 || p.Quantity <= 0 {
			return ErrInvalidInput
		}
		if strings.TrimSpace(p.Reason) == "" {
			return ErrInvalidInput
		}
		return nil

	case model.RequestKindAccess:
		// accessはpayloadなし
		if in.Entry != nil || in.Exit != nil || in.Loss != nil {
			return ErrPayloadMismatch
		}
		return nil

	default:
		return ErrInvalidInput
	}
}
