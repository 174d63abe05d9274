// Package malgo implements live audio I/O on miniaudio through gen2brain/malgo:
// a playback driver for the engine transport, a capture source that feeds
// input nodes, and a device enumerator for the device catalog.
package malgo

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
)

// discardDevice is the name of miniaudio's null device
const discardDevice = "Discard all samples"

// BackendFor maps a configured backend name to a malgo backend. "auto" and
// the empty string pick the platform default.
func BackendFor(name string) (malgo.Backend, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return platformBackend()
	case "alsa":
		return malgo.BackendAlsa, nil
	case "pulseaudio", "pulse":
		return malgo.BackendPulseaudio, nil
	case "jack":
		return malgo.BackendJack, nil
	case "wasapi":
		return malgo.BackendWasapi, nil
	case "coreaudio":
		return malgo.BackendCoreaudio, nil
	case "null":
		return malgo.BackendNull, nil
	default:
		return malgo.BackendNull, errors.Newf("unknown audio backend: %s", name).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryConfiguration).
			Context("backend", name).
			Build()
	}
}

func platformBackend() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("os", runtime.GOOS).
			Build()
	}
}

func initContext(backendName string) (*malgo.AllocatedContext, error) {
	backend, err := BackendFor(backendName)
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Context("backend", backendName).
			Build()
	}
	return ctx, nil
}

func releaseContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Uninit()
	ctx.Free()
}

// hexToASCII converts a hexadecimal device ID to its printable form
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

// deviceUID returns the decoded device ID, falling back to the raw hex
func deviceUID(info *malgo.DeviceInfo) string {
	id := info.ID.String()
	if decoded, err := hexToASCII(id); err == nil && decoded != "" {
		return decoded
	}
	return id
}

// findDevice resolves a device ID from the catalog to a miniaudio device. An
// empty ID resolves to nil, which selects the system default.
func findDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, id string) (*malgo.DeviceInfo, error) {
	if id == "" || id == "default" {
		return nil, nil
	}
	uid, _ := audiocore.ParseDeviceIdentifier(id)

	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}
	for i := range infos {
		if deviceUID(&infos[i]) == uid || infos[i].Name() == id {
			return &infos[i], nil
		}
	}
	return nil, errors.Newf("%w: %q", audiocore.ErrDeviceNotFound, id).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryNotFound).
		Context("available_devices", len(infos)).
		Build()
}

// encodeFloat32 writes samples as little-endian float32 bytes
func encodeFloat32(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

// decodeFloat32 reads little-endian float32 bytes into samples
func decodeFloat32(samples []float32, src []byte) int {
	n := min(len(samples), len(src)/4)
	for i := range n {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return n
}
