package usermod

import "fmt"

// PinManager arbitrates pin ownership between usermods. A pin can only be
// owned by one owner at a time.
//
// Using the pin manager is a policy of each usermod, not something the host
// enforces: a usermod can still configure pins through PinIO directly.
type PinManager struct {
	maxPin Pin
	owners map[Pin]pinAllocation
}

type pinAllocation struct {
	owner  string
	output bool
}

// PinRequest is a single pin in a multi-pin allocation.
type PinRequest struct {
	Pin    Pin
	Output bool
}

// NewPinManager returns a pin manager for pins 0 up to and including maxPin.
func NewPinManager(maxPin Pin) *PinManager {
	return &PinManager{
		maxPin: maxPin,
		owners: make(map[Pin]pinAllocation),
	}
}

// Allocate claims a pin for the given owner. It returns an error wrapping
// ErrPinConflict if the pin is out of range or already owned (by anyone,
// including the same owner).
func (m *PinManager) Allocate(pin Pin, output bool, owner string) error {
	if pin < 0 || pin > m.maxPin {
		return fmt.Errorf("%w: pin %d is not a valid GPIO", ErrPinConflict, pin)
	}
	if a, ok := m.owners[pin]; ok {
		return fmt.Errorf("%w: pin %d is owned by %s", ErrPinConflict, pin, a.owner)
	}
	m.owners[pin] = pinAllocation{owner: owner, output: output}
	return nil
}

// AllocateMulti claims all requested pins or none of them.
func (m *PinManager) AllocateMulti(pins []PinRequest, owner string) error {
	for i, req := range pins {
		if err := m.Allocate(req.Pin, req.Output, owner); err != nil {
			for _, prev := range pins[:i] {
				m.Deallocate(prev.Pin, owner)
			}
			return err
		}
	}
	return nil
}

// Deallocate releases a pin. It only succeeds if the pin is owned by owner.
func (m *PinManager) Deallocate(pin Pin, owner string) bool {
	a, ok := m.owners[pin]
	if !ok || a.owner != owner {
		return false
	}
	delete(m.owners, pin)
	return true
}

// Owner returns the current owner of the pin, if any.
func (m *PinManager) Owner(pin Pin) (owner string, ok bool) {
	a, ok := m.owners[pin]
	return a.owner, ok
}

// IsOutput reports whether the pin was allocated as an output.
func (m *PinManager) IsOutput(pin Pin) bool {
	return m.owners[pin].output
}
