package soft

import "github.com/gogpu/accel/backend"

func init() {
	backend.Register(backend.Soft, func() (backend.Device, error) {
		return New(WithWorkers(0)), nil
	})
}
