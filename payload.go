package unlocknotify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind names the closed set of task kinds. Each kind has exactly one payload type.
type Kind string

const (
	// KindEntityUnlocked carries an EntityUnlocked payload.
	KindEntityUnlocked Kind = "entity_unlocked"
	// KindRegionUnlocked carries a RegionUnlocked payload.
	KindRegionUnlocked Kind = "region_unlocked"
)

// Payload is the typed body of a task. Implementations are EntityUnlocked and RegionUnlocked.
type Payload interface {
	// Kind returns the task kind that carries this payload.
	Kind() Kind
	// Recipient returns the delivery address.
	Recipient() string

	validate() error
}

// EntityUnlocked is a snapshot of an entity taken when its task was enqueued.
type EntityUnlocked struct {
	Address    string    `json:"address"`
	EntityID   string    `json:"entityId"`
	Name       string    `json:"name"`
	Tag        string    `json:"tag,omitempty"`
	Region     string    `json:"region"`
	UnlockDate time.Time `json:"unlockDate"`
}

// Kind implements Payload.
func (EntityUnlocked) Kind() Kind { return KindEntityUnlocked }

// Recipient implements Payload.
func (p EntityUnlocked) Recipient() string { return p.Address }

func (p EntityUnlocked) validate() error {
	if strings.TrimSpace(p.Address) == "" {
		return ErrAddressRequired
	}
	if p.EntityID == "" || p.Name == "" {
		return fmt.Errorf("%w: entity id and name are required", ErrInvalidPayload)
	}

	return nil
}

// RegionUnlocked is a snapshot of a region taken when its task was enqueued.
type RegionUnlocked struct {
	Address       string    `json:"address"`
	Region        string    `json:"region"`
	Kickoff       time.Time `json:"kickoff"`
	UnlockedCount int       `json:"unlockedCount"`
}

// Kind implements Payload.
func (RegionUnlocked) Kind() Kind { return KindRegionUnlocked }

// Recipient implements Payload.
func (p RegionUnlocked) Recipient() string { return p.Address }

func (p RegionUnlocked) validate() error {
	if strings.TrimSpace(p.Address) == "" {
		return ErrAddressRequired
	}
	if p.Region == "" {
		return fmt.Errorf("%w: region is required", ErrInvalidPayload)
	}

	return nil
}

// ValidatePayload checks the payload's required fields.
func ValidatePayload(p Payload) error {
	if p == nil {
		return ErrNilPayload
	}

	return p.validate()
}

// EncodePayload returns the kind discriminator and JSON body for storage.
func EncodePayload(p Payload) (Kind, json.RawMessage, error) {
	if err := ValidatePayload(p); err != nil {
		return "", nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return p.Kind(), raw, nil
}

// DecodePayload restores a stored payload using its kind discriminator.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	var (
		payload Payload
		err     error
	)
	switch kind {
	case KindEntityUnlocked:
		var p EntityUnlocked
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindRegionUnlocked:
		var p RegionUnlocked
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}

	return payload, nil
}
