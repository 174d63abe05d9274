package audiocore

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// Direction selects output or input devices
type Direction int

const (
	DirectionOutput Direction = iota
	DirectionInput
)

// String returns the string representation of the direction
func (d Direction) String() string {
	if d == DirectionInput {
		return "input"
	}
	return "output"
}

// DeviceInfo is a hardware device as reported by a backend
type DeviceInfo struct {
	UID         string
	Name        string
	DataSources []string
	IsDefault   bool
}

// Device is an enumerated, selectable device
type Device struct {
	Name      string
	ID        string
	Direction Direction
	IsDefault bool
}

// DeviceEnumerator lists hardware devices
type DeviceEnumerator interface {
	Enumerate(direction Direction) ([]DeviceInfo, error)
}

// DeviceIdentifier builds a device ID. A device with a data source is
// identified by its UID and the data source name separated by one space.
func DeviceIdentifier(uid, dataSource string) string {
	if dataSource == "" {
		return uid
	}
	return uid + " " + dataSource
}

// ParseDeviceIdentifier splits a device ID at the first space into the
// hardware UID and the data source name
func ParseDeviceIdentifier(id string) (uid, dataSource string) {
	uid, dataSource, _ = strings.Cut(id, " ")
	return uid, dataSource
}

// ListDevices returns devices in enumeration order. Devices with more than
// one data source produce one entry per data source.
func ListDevices(enumerator DeviceEnumerator, direction Direction) ([]Device, error) {
	infos, err := enumerator.Enumerate(direction)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Context("direction", direction.String()).
			Build()
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if len(info.DataSources) <= 1 {
			devices = append(devices, Device{
				Name:      info.Name,
				ID:        info.UID,
				Direction: direction,
				IsDefault: info.IsDefault,
			})
			continue
		}
		for i, ds := range info.DataSources {
			devices = append(devices, Device{
				Name:      info.Name + " (" + ds + ")",
				ID:        DeviceIdentifier(info.UID, ds),
				Direction: direction,
				IsDefault: info.IsDefault && i == 0,
			})
		}
	}
	return devices, nil
}

// DeviceCatalog caches device listings per direction
type DeviceCatalog struct {
	enumerator DeviceEnumerator
	cache      *cache.Cache
	log        logger.Logger
}

// NewDeviceCatalog creates a catalog that caches listings for ttl
func NewDeviceCatalog(enumerator DeviceEnumerator, ttl time.Duration, log logger.Logger) *DeviceCatalog {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("devices")
	}
	if ttl <= 0 {
		ttl = DefaultDeviceCacheTTL
	}
	return &DeviceCatalog{
		enumerator: enumerator,
		cache:      cache.New(ttl, 2*ttl),
		log:        log,
	}
}

// Devices returns the cached listing, enumerating on a miss
func (c *DeviceCatalog) Devices(direction Direction) ([]Device, error) {
	key := direction.String()
	if cached, ok := c.cache.Get(key); ok {
		if devices, ok := cached.([]Device); ok {
			return devices, nil
		}
	}

	devices, err := ListDevices(c.enumerator, direction)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, devices)
	c.log.Debug("device listing refreshed",
		logger.String("direction", key),
		logger.Int("count", len(devices)))
	return devices, nil
}

// Lookup finds a device by ID. An empty ID selects the default device.
func (c *DeviceCatalog) Lookup(direction Direction, id string) (Device, error) {
	devices, err := c.Devices(direction)
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if (id == "" && d.IsDefault) || (id != "" && d.ID == id) {
			return d, nil
		}
	}
	if id == "" {
		return Device{}, newError(ErrDeviceNotFound, "no default %s device", direction)
	}
	return Device{}, newError(ErrDeviceNotFound, "%s device %q", direction, id)
}

// Invalidate drops all cached listings
func (c *DeviceCatalog) Invalidate() {
	c.cache.Flush()
	c.log.Debug("device cache invalidated")
}
