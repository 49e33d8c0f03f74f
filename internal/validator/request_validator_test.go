package validator_test

import (
	"testing"

	"comedor/internal/domain/model"
	"comedor/internal/usecase"
	"comedor/internal/validator"

	"github.com/stretchr/testify/assert"
)

func TestRequestValidator_Entry(t *testing.T) {
	v := validator.NewRequestValidator()

	ok := usecase.CreateRequestInput{
		Kind:  model.RequestKindEntry,
		Entry: &model.EntryPayload{Name: "arroz", Unit: "kg", Quantity: 10},
	}
	assert.NoError(t, v.ValidateCreate(ok))

	missing := ok
	missing.Entry = nil
	assert.ErrorIs(t, v.ValidateCreate(missing), validator.ErrPayloadMismatch)

	blankName := ok
	blankName.Entry = &model.EntryPayload{Name: "   ", Unit: "kg", Quantity: 10}
	assert.ErrorIs(t, v.ValidateCreate(blankName), validator.ErrInvalidInput)

	zeroQty := ok
	zeroQty.Entry = &model.EntryPayload{Name: "arroz", Unit: "kg", Quantity: 0}
	assert.ErrorIs(t, v.ValidateCreate(zeroQty), validator.ErrInvalidInput)
}

func TestRequestValidator_Exit(t *testing.T) {
	v := validator.NewRequestValidator()

	ok := usecase.CreateRequestInput{
		Kind: model.RequestKindExit,
		Exit: &model.ExitPayload{ProductID: 1, Quantity: 5, Students: 100, Teachers: 5},
	}
	assert.NoError(t, v.ValidateCreate(ok))

	negative := ok
	negative.Exit = &model.ExitPayload{ProductID: 1, Quantity: 5, Students: -1}
	assert.ErrorIs(t, v.ValidateCreate(negative), validator.ErrInvalidInput)

	// exitなのにlossのpayloadが付いている
	mixed := ok
	mixed.Loss = &model.LossPayload{BatchID: 1, Quantity: 1, Reason: "x"}
	assert.ErrorIs(t, v.ValidateCreate(mixed), validator.ErrPayloadMismatch)
}

func TestRequestValidator_Loss(t *testing.T) {
	v := validator.NewRequestValidator()

	ok := usecase.CreateRequestInput{
		Kind: model.RequestKindLoss,
		Loss: &model.LossPayload{BatchID: 1, Quantity: 2, Reason: "humedad"},
	}
	assert.NoError(t, v.ValidateCreate(ok))

	noReason := ok
	noReason.Loss = &model.LossPayload{BatchID: 1, Quantity: 2, Reason: " "}
	assert.ErrorIs(t, v.ValidateCreate(noReason), validator.ErrInvalidInput)
}

func TestRequestValidator_Access(t *testing.T) {
	v := validator.NewRequestValidator()

	assert.NoError(t, v.ValidateCreate(usecase.CreateRequestInput{Kind: model.RequestKindAccess}))

	withPayload := usecase.CreateRequestInput{
		Kind:  model.RequestKindAccess,
		Entry: &model.EntryPayload{Name: "arroz", Unit: "kg", Quantity: 1},
	}
	assert.ErrorIs(t, v.ValidateCreate(withPayload), validator.ErrPayloadMismatch)
}

func TestRequestValidator_UnknownKind(t *testing.T) {
	v := validator.NewRequestValidator()

	assert.ErrorIs(t, v.ValidateCreate(usecase.CreateRequestInput{Kind: "transfer"}), validator.ErrInvalidInput)
}
