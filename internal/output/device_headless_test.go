//go:build headless

package output

import "testing"

func TestNewDeviceUnavailable(t *testing.T) {
	d, err := NewDevice(48000, 0)
	if err != ErrNoDevice {
		t.Fatalf("NewDevice err = %v, want ErrNoDevice", err)
	}
	if d != nil {
		t.Error("NewDevice returned a device")
	}
}
