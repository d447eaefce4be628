package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	Name   string `validate:"required,min=2"`
	Email  string `validate:"required,email"`
	Seats  int    `validate:"gte=1,lte=10"`
	Mode   string `validate:"oneof=solo group"`
	Amount int64  `validate:"gt=0"`
}

func TestValidateStructOK(t *testing.T) {
	req := sampleRequest{Name: "Ari", Email: "ari@example.com", Seats: 3, Mode: "group", Amount: 500}
	assert.Empty(t, ValidateStruct(req))
}

func TestValidateStructReportsEachField(t *testing.T) {
	req := sampleRequest{Name: "A", Email: "not-an-email", Seats: 11, Mode: "duo", Amount: 0}

	errs := ValidateStruct(req)
	assert.Len(t, errs, 5)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}

	assert.Equal(t, "min", byField["Name"].Tag)
	assert.Equal(t, "Email must be a valid email address", byField["Email"].Message)
	assert.Equal(t, "Seats must be less than or equal to 10", byField["Seats"].Message)
	assert.Equal(t, "Mode must be one of: solo group", byField["Mode"].Message)
	assert.Equal(t, "Amount must be greater than 0", byField["Amount"].Message)
}
