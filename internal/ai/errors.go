package ai

import (
	"fmt"

	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

// ErrUnavailable marks a provider that is not configured (missing API key).
var ErrUnavailable = fmt.Errorf("%w: provider not configured", appErr.ErrProvider)
