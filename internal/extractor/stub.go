package extractor

import (
	"github.com/maltedev/retailsearch/internal/models"
)

// stub registers a platform whose extraction is not implemented yet.
// Keeping it behind the same interface exercises the fan-out and
// error-surfacing paths without special cases in the orchestrator.
type stub struct {
	platform models.Platform
}

func newStub(p models.Platform) *stub {
	return &stub{platform: p}
}

func (s *stub) Platform() models.Platform {
	return s.platform
}

func (s *stub) Extract(html string, opts Options) (*Result, error) {
	return nil, CapabilityError{Platform: s.platform, Op: "search extraction"}
}
