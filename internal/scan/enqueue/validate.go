// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package enqueue

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ferrex/scancore/internal/scan/job"
)

var (
	validatorOnce sync.Once
	structValidator *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New()
	})
	return structValidator
}

// wireShape is the struct-tag-validated projection of the parts of an
// EnqueueRequest that come straight off the wire (the admin API or CLI),
// as opposed to the domain rules job.EnqueueRequest.Validate already
// enforces.
type wireShape struct {
	Priority      string `validate:"required,oneof=P0 P1 P2 P3"`
	CorrelationID string `validate:"omitempty,max=128"`
}

func validateWireShape(req job.EnqueueRequest) error {
	ws := wireShape{
		Priority:      req.Priority.String(),
		CorrelationID: req.CorrelationID,
	}
	if err := getValidator().Struct(ws); err != nil {
		return fmt.Errorf("%w: %v", job.ErrValidation, err)
	}
	return nil
}
