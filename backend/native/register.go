//go:build !nogpu

package native

import "github.com/gogpu/accel/backend"

func init() {
	backend.Register(backend.Native, func() (backend.Device, error) {
		d, err := Open()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}
