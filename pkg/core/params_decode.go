package core

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode copies p into the struct pointed to by out using `mapstructure`
// tags. Scalars are converted weakly so that `order_by: id` fills a []string.
// Unknown keys are an error.
func (p Params) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to create parameter decoder: %w", err)
	}
	if err := dec.Decode(p.Any()); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
