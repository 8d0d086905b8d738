package rtcore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f32"
)

// ErrShortInstanceData is returned when decoding fewer than
// InstanceDescSize bytes.
var ErrShortInstanceData = errors.New("rtcore: instance data too short")

// Transform is a row-major 4x4 object-to-world matrix. Only the first
// three rows are serialized; the last row is implied (0, 0, 0, 1).
type Transform = f32.Mat4

// IdentityTransform returns the 4x4 identity matrix.
func IdentityTransform() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// InstanceFlags is the 8-bit per-instance flag field.
type InstanceFlags uint8

// Instance flags.
const (
	InstanceFlagNone                InstanceFlags = 0
	InstanceFlagTriangleCullDisable InstanceFlags = 1 << 0
	InstanceFlagTriangleFrontCCW    InstanceFlags = 1 << 1
	InstanceFlagForceOpaque         InstanceFlags = 1 << 2
	InstanceFlagForceNonOpaque      InstanceFlags = 1 << 3
)

const (
	instanceIDMask           = 1<<24 - 1
	instanceContributionMask = 1<<24 - 1

	// MaxInstanceID is the largest encodable instance id.
	MaxInstanceID = instanceIDMask

	// MaxInstanceContributionToHitGroupIndex is the largest encodable
	// hit group contribution.
	MaxInstanceContributionToHitGroupIndex = instanceContributionMask
)

// InstanceDesc is one top-level instance record.
//
// Wire layout (64 bytes, little endian):
//
//	offset  0: float32[3][4] transform rows
//	offset 48: uint32 instanceID (24 bits) | mask << 24
//	offset 52: uint32 contribution (24 bits) | flags << 24
//	offset 56: uint64 bottom-level acceleration structure address
type InstanceDesc struct {
	Transform                   Transform
	InstanceID                  uint32
	InstanceMask                uint8
	ContributionToHitGroupIndex uint32
	Flags                       InstanceFlags
	AccelerationStructure       DeviceAddress
}

// Encode writes the record into b, which must hold InstanceDescSize bytes.
func (d *InstanceDesc) Encode(b []byte) error {
	if len(b) < InstanceDescSize {
		return fmt.Errorf("%w: %d bytes", ErrShortInstanceData, len(b))
	}
	if d.InstanceID > MaxInstanceID {
		return fmt.Errorf("rtcore: instance id %d exceeds 24 bits", d.InstanceID)
	}
	if d.ContributionToHitGroupIndex > MaxInstanceContributionToHitGroupIndex {
		return fmt.Errorf("rtcore: hit group contribution %d exceeds 24 bits", d.ContributionToHitGroupIndex)
	}
	for i := 0; i < 12; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(d.Transform[i]))
	}
	binary.LittleEndian.PutUint32(b[48:], d.InstanceID|uint32(d.InstanceMask)<<24)
	binary.LittleEndian.PutUint32(b[52:], d.ContributionToHitGroupIndex|uint32(d.Flags)<<24)
	binary.LittleEndian.PutUint64(b[56:], uint64(d.AccelerationStructure))
	return nil
}

// DecodeInstanceDesc parses one record from b.
func DecodeInstanceDesc(b []byte) (InstanceDesc, error) {
	var d InstanceDesc
	if len(b) < InstanceDescSize {
		return d, fmt.Errorf("%w: %d bytes", ErrShortInstanceData, len(b))
	}
	for i := 0; i < 12; i++ {
		d.Transform[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	d.Transform[15] = 1

	idMask := binary.LittleEndian.Uint32(b[48:])
	d.InstanceID = idMask & instanceIDMask
	d.InstanceMask = uint8(idMask >> 24)

	contribFlags := binary.LittleEndian.Uint32(b[52:])
	d.ContributionToHitGroupIndex = contribFlags & instanceContributionMask
	d.Flags = InstanceFlags(contribFlags >> 24)

	d.AccelerationStructure = DeviceAddress(binary.LittleEndian.Uint64(b[56:]))
	return d, nil
}

// EncodeInstanceDescs serializes records back to back.
func EncodeInstanceDescs(descs []InstanceDesc) ([]byte, error) {
	out := make([]byte, len(descs)*InstanceDescSize)
	for i := range descs {
		if err := descs[i].Encode(out[i*InstanceDescSize:]); err != nil {
			return nil, fmt.Errorf("instance %d: %w", i, err)
		}
	}
	return out, nil
}
