// Package link runs the ordered link stages (archives, then executables,
// then shared libraries) through the shim, each from a generated response
// file.
package link

import (
	"github.com/AndreyAkinshin/shimbuild/internal/config"
)

// Stage is one link step with all paths resolved to host form.
type Stage struct {
	Name            string
	Kind            string
	Tool            string
	Args            []string
	ObjectDir       string // host path
	ObjectPattern   string
	MinObjects      int
	Outputs         []string // host paths
	Libraries       []string // tool form or bare names, passed through
	SystemLibraries []string
	DependsOn       []string
	ResponseFile    string // file name inside the scratch directory
}

// StagesFromConfig builds the stage list in declaration order. Defaults
// must already be applied.
func StagesFromConfig(cfg *config.Config) []Stage {
	stages := make([]Stage, 0, len(cfg.Link.Stages))
	for _, sc := range cfg.Link.Stages {
		stages = append(stages, Stage{
			Name:            sc.Name,
			Kind:            sc.Kind,
			Tool:            sc.Tool,
			Args:            sc.Args,
			ObjectDir:       cfg.StageObjectDir(sc),
			ObjectPattern:   sc.ObjectPattern,
			MinObjects:      sc.MinObjects,
			Outputs:         cfg.StageOutputs(sc),
			Libraries:       sc.Libraries,
			SystemLibraries: sc.SystemLibraries,
			DependsOn:       sc.DependsOn,
			ResponseFile:    sc.ResponseFile,
		})
	}
	return stages
}

// FinalArtifacts returns every stage output in stage order.
func FinalArtifacts(stages []Stage) []string {
	var out []string
	for _, st := range stages {
		out = append(out, st.Outputs...)
	}
	return out
}
