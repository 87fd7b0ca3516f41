package lockable

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode copies the object's current attributes into target, which must be
// a pointer to a struct or map. Struct fields are matched by their cfg tag.
// Attributes without a matching field are ignored.
func (o *Object) Decode(target any) error {
	native, err := o.Native()
	if err != nil {
		return fmt.Errorf("failed to convert %s attributes: %w", o.kind, err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          TagName,
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(native); err != nil {
		return fmt.Errorf("failed to decode %s: %w", o.kind, err)
	}
	return nil
}
