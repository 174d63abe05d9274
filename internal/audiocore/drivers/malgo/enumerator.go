package malgo

import (
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
)

// Enumerator lists miniaudio devices. It implements audiocore.DeviceEnumerator.
type Enumerator struct {
	Backend string
}

// Enumerate returns playback or capture devices, skipping the null device
func (e Enumerator) Enumerate(direction audiocore.Direction) ([]audiocore.DeviceInfo, error) {
	ctx, err := initContext(e.Backend)
	if err != nil {
		return nil, err
	}
	defer releaseContext(ctx)

	kind := malgo.Playback
	if direction == audiocore.DirectionInput {
		kind = malgo.Capture
	}
	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Context("direction", direction.String()).
			Build()
	}
	return toDeviceInfos(infos), nil
}

func toDeviceInfos(infos []malgo.DeviceInfo) []audiocore.DeviceInfo {
	devices := make([]audiocore.DeviceInfo, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), discardDevice) {
			continue
		}
		devices = append(devices, audiocore.DeviceInfo{
			UID:       deviceUID(&infos[i]),
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}
