package cases

import (
	"github.com/gofiber/fiber/v2"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the cases feature around an already wired service.
func NewFeature(service *Service) *Feature {
	return &Feature{
		service: service,
		handler: NewHandler(service),
	}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "cases"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
