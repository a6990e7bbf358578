package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zfogg/paddock/internal/config"
)

func TestValidateServicesNoneRequired(t *testing.T) {
	sv := NewServiceValidator(&config.Config{})
	assert.NoError(t, sv.ValidateServices(context.Background()))
}

func TestValidateServicesUnknownIsSkipped(t *testing.T) {
	sv := NewServiceValidator(&config.Config{RequiredServices: []string{"gorse"}})
	assert.NoError(t, sv.ValidateServices(context.Background()))
}

func TestValidateServicesMissingConfigFails(t *testing.T) {
	for _, name := range []string{"redis", "s3", "elasticsearch"} {
		t.Run(name, func(t *testing.T) {
			sv := NewServiceValidator(&config.Config{RequiredServices: []string{name}})
			err := sv.ValidateServices(context.Background())
			assert.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}
