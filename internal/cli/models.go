package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nakajima/serverdata/internal/config"
	"github.com/nakajima/serverdata/internal/modelspec"
	"github.com/nakajima/serverdata/internal/schema"
)

// specsDir returns the positional directory when given, otherwise the
// configured specs_dir.
func specsDir(cfg *config.Config, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return cfg.SpecsDir
}

// configure runs setup and reports a configuration failure.
func (o *RootOptions) configure(cmd *cobra.Command, f *OutputFormatter) (*config.Config, error) {
	cfg, err := o.setup(cmd)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	return cfg, nil
}

// loadModels loads every model in dir, stopping at the first error.
func (o *RootOptions) loadModels(f *OutputFormatter, dir string) (*modelspec.LoadResult, error) {
	result, errs := modelspec.Load(dir, modelspec.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, loadFailure(f, errs)
	}
	f.VerboseLog("Loaded %d model(s) from %d CUE file(s) in %s", len(result.Registries), result.FileCount, dir)
	o.Logger().Debug("models loaded", "dir", dir, "models", len(result.Registries))
	return result, nil
}

// registry loads dir and returns the registry of the named model.
func (o *RootOptions) registry(f *OutputFormatter, dir, model string) (*schema.Registry, error) {
	result, err := o.loadModels(f, dir)
	if err != nil {
		return nil, err
	}
	reg, ok := result.Registry(model)
	if !ok {
		names := make([]string, len(result.Registries))
		for i, r := range result.Registries {
			names[i] = r.Model()
		}
		return nil, f.Fail(ExitCommandError, ErrCodeUnknownModel,
			fmt.Sprintf("model %q is not declared in %s", model, dir),
			map[string]any{"models": names})
	}
	return reg, nil
}

// loadFailure reports the first load error under its code.
func loadFailure(f *OutputFormatter, errs []error) error {
	var loadErr *modelspec.LoadError
	if errors.As(errs[0], &loadErr) {
		exit := ExitCommandError
		if loadErr.Code == modelspec.ErrCodeInvalidModel || loadErr.Code == modelspec.ErrCodeRegistration {
			exit = ExitFailure
		}
		return f.Fail(exit, loadErr.Code, loadErr.Error(), nil)
	}
	return f.Fail(ExitCommandError, modelspec.ErrCodeGeneric, errs[0].Error(), nil)
}
