package memory

import (
	"errors"
	"fmt"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

var (
	errEmptyID     = errors.New("analysis id is empty")
	errDuplicateID = errors.New("analysis id already registered")
)

func errUnknownID(id string) error {
	return fmt.Errorf("no analysis with id %s", id)
}

func errTerminalStatus(status domain.AnalysisStatus) error {
	return fmt.Errorf("analysis already %s, status cannot change", status)
}
