package testkit

import (
	"fmt"

	"dxdrive/internal/driver"
)

// CheckOutcome verifies the shape of an Outcome against its status:
//  1. success carries a non-empty object and no diagnostics
//  2. compile errors carry non-empty diagnostics and no artifacts
//  3. every other status carries no buffers at all
func CheckOutcome(o *driver.Outcome) error {
	if o == nil {
		return fmt.Errorf("nil outcome")
	}
	switch o.Status {
	case driver.StatusSuccess:
		if o.Object.Len() == 0 {
			return fmt.Errorf("success without object code")
		}
		if o.Diagnostics != nil {
			return fmt.Errorf("success with diagnostics")
		}
		if o.RootSignature != nil && o.RootSignature.Len() == 0 {
			return fmt.Errorf("empty root signature buffer")
		}
		for kind, b := range o.Extras {
			if b.Len() == 0 {
				return fmt.Errorf("empty %s extra", kind)
			}
		}
	case driver.StatusCompileErrors:
		if o.Diagnostics.Len() == 0 {
			return fmt.Errorf("compile errors without diagnostics")
		}
		if o.Object != nil || o.RootSignature != nil || len(o.Extras) != 0 {
			return fmt.Errorf("compile errors with artifacts")
		}
	default:
		if o.Object != nil || o.RootSignature != nil || o.Diagnostics != nil || len(o.Extras) != 0 {
			return fmt.Errorf("%s outcome holds buffers", o.Status)
		}
	}
	if o.Err() == nil && o.Status != driver.StatusSuccess {
		return fmt.Errorf("%s outcome without error", o.Status)
	}
	return nil
}
