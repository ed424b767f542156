package project

import (
	"path/filepath"

	"github.com/AndreyAkinshin/shimbuild/internal/config"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
)

// Project represents a loaded shimbuild project.
type Project struct {
	Root       string
	ConfigPath string
	Config     *config.Config
	Warnings   []string
}

// LoadProject finds and loads a project from the current directory.
func LoadProject() (*Project, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, err.Error())
	}
	return LoadProjectFrom(root)
}

// LoadProjectFrom loads a project from a specified root directory.
func LoadProjectFrom(root string) (*Project, error) {
	return load(root, filepath.Join(root, ConfigDirName, ConfigFileName))
}

// LoadConfigFile loads a project from an explicit config path. The project
// root is the directory containing the config's parent directory.
func LoadConfigFile(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid config path")
	}
	return load(filepath.Dir(filepath.Dir(abs)), abs)
}

func load(root, configPath string) (*Project, error) {
	cfg, warnings, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "failed to load configuration: "+err.Error())
	}

	if err := validateDirectory(cfg.Paths.BuildDir, "paths.build_dir"); err != nil {
		return nil, err
	}

	return &Project{
		Root:       root,
		ConfigPath: configPath,
		Config:     cfg,
		Warnings:   warnings,
	}, nil
}
