//go:build !darwin

package hypervisor

// NewDriver returns an error on unsupported platforms.
func NewDriver() (Driver, error) {
	return nil, ErrUnsupportedPlatform
}
