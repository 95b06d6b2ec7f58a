package plugins

import (
	"context"
	"fmt"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// ExtraPrefix prefixes the capability names of plugin converters, so a
// converter from plugin "tket" requires extra "plugin:tket".
const ExtraPrefix = "plugin:"

// textFunc converts program text.
type textFunc func(ctx context.Context, program string) (string, error)

// resolveTextPair checks that both endpoints are registered types with a
// text serialization. Plugins exchange program text, never Go values.
func resolveTextPair(catalog *programs.Catalog, source, target string) (programs.ProgramType, programs.ProgramType, error) {
	src, err := catalog.Resolve(source)
	if err != nil {
		return "", "", err
	}
	tgt, err := catalog.Resolve(target)
	if err != nil {
		return "", "", err
	}
	for _, t := range []programs.ProgramType{src, tgt} {
		spec, _ := catalog.Lookup(t)
		if !spec.IsText() {
			return "", "", fmt.Errorf("program type %s has no text form", t)
		}
	}
	return src, tgt, nil
}

// adaptText wraps a text conversion as a ConvertFunc that encodes the input
// and decodes the output with the catalog codecs.
func adaptText(catalog *programs.Catalog, name string, target programs.ProgramType, fn textFunc) transpiler.ConvertFunc {
	return func(ctx context.Context, program any) (any, error) {
		data, _, err := catalog.Encode(program)
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, string(data))
		if err != nil {
			return nil, qerrors.NewPermanent("plugin conversion failed", err).
				WithCode(qerrors.ErrCodePluginFailed).
				WithOperation(name)
		}
		return catalog.Decode(target, []byte(out))
	}
}

// Converters returns one converter per conversion the plugin declares.
func (p *WASMPlugin) Converters(catalog *programs.Catalog) ([]transpiler.Converter, error) {
	name := p.manifest.Raw.Metadata.Name
	out := make([]transpiler.Converter, 0, len(p.manifest.Raw.Conversions))
	for _, spec := range p.manifest.Raw.Conversions {
		src, tgt, err := resolveTextPair(catalog, spec.Source, spec.Target)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
		spec := spec
		convName := name + ":" + spec.Export
		out = append(out, transpiler.Converter{
			Source:        src,
			Target:        tgt,
			Lossy:         spec.Lossy,
			RequiresExtra: p.manifest.Extra(),
			Name:          convName,
			Func: adaptText(catalog, convName, tgt, func(ctx context.Context, program string) (string, error) {
				return p.Convert(ctx, spec, program)
			}),
		})
	}
	return out, nil
}

// Converter returns the script as a converter requiring extra
// "plugin:<name>".
func (sc *StarlarkConverter) Converter(catalog *programs.Catalog) (transpiler.Converter, error) {
	src, tgt, err := resolveTextPair(catalog, sc.spec.Source, sc.spec.Target)
	if err != nil {
		return transpiler.Converter{}, fmt.Errorf("starlark converter %s: %w", sc.spec.Name, err)
	}
	return transpiler.Converter{
		Source:        src,
		Target:        tgt,
		Lossy:         sc.spec.Lossy,
		RequiresExtra: ExtraPrefix + sc.spec.Name,
		Name:          "starlark:" + sc.spec.Name,
		Func:          adaptText(catalog, "starlark:"+sc.spec.Name, tgt, sc.Convert),
	}, nil
}
