package hostdefaults

import "fmt"

// HexEC2Encoder renders a numeric volume id the way Nova's ec2utils module
// does: an 8-hex-digit, zero-padded "vol-" id. LocalBlock falls back to
// this form when no symlink exists under the volume-name-template path.
type HexEC2Encoder struct{}

// ToEC2VolumeID renders id as "vol-xxxxxxxx".
func (HexEC2Encoder) ToEC2VolumeID(id int64) string {
	return fmt.Sprintf("vol-%08x", id)
}
