package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// epoch is the sonyflake start time; ids stay 63-bit for ~174 years after it.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator hands out time-ordered unique ids for request tracing
type Generator struct {
	sf *sonyflake.Sonyflake
}

// NewGenerator creates a Generator bound to one machine id
func NewGenerator(machineID uint16) (*Generator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: epoch,
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sonyflake: %w", err)
	}
	return &Generator{sf: sf}, nil
}

// Next returns the next id in decimal form
func (g *Generator) Next() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return strconv.FormatUint(id, 10), nil
}

var (
	defaultGen  *Generator
	defaultOnce sync.Once
	defaultErr  error
	machineID   uint16 = 1
)

// SetMachineID sets the machine id of the default generator. It has no
// effect once the default generator has been used.
func SetMachineID(id uint16) {
	machineID = id
}

// NextID generates an id with the process-wide default generator
func NextID() (string, error) {
	defaultOnce.Do(func() {
		defaultGen, defaultErr = NewGenerator(machineID)
	})
	if defaultErr != nil {
		return "", defaultErr
	}
	return defaultGen.Next()
}
