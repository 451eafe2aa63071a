// Package filters implements PenchY's Filter and SystemFilter elements:
// the Dacapo harness output parser, a stats aggregator, and the reserved
// SystemFilter behaviors spec.md §4.9 names (Send, Receive, Dump,
// Save/BackupFile). Grounded on original_source/penchy/jobs/filters.py.
package filters

import (
	"context"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"

	"penchy/engine/core"
	"penchy/engine/pipeline"
)

// version is reported in Dump's system record. Set at build time in a full
// release; fixed here since PenchY has no separate release-tagging step.
const version = "0.1.0"

var sendInputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "payload", Types: []pipeline.TypeDesc{pipeline.Of(any(nil))}},
)

// Send invokes environment.Send(payload) — original_source/penchy/jobs/filters.py's
// Send is an empty marker class; spec.md §4.9 gives it the actual
// behavior.
type Send struct {
	pipeline.Base
}

// NewSend builds a Send SystemFilter.
func NewSend(name string) *Send {
	return &Send{Base: pipeline.NewBase(name, sendInputs, nil)}
}

// IsSystemFilter marks Send as a pipeline.SystemFilter.
func (s *Send) IsSystemFilter() bool { return true }

func (s *Send) Run(ctx context.Context, kwargs map[string]any) error {
	env, ok := kwargs[pipeline.ReservedEnvironment].(pipeline.Environment)
	if !ok {
		return core.NewWrongInputError("Send requires an environment", nil)
	}
	return env.Send(kwargs["payload"])
}

var receiveOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "results", Types: []pipeline.TypeDesc{pipeline.Map(), pipeline.Of(any(nil))}},
)

// Receive publishes environment.Receive() as out.results — the server-side
// flow's mandatory start (spec.md §4.5, §4.9).
type Receive struct {
	pipeline.Base
}

// NewReceive builds a Receive SystemFilter.
func NewReceive(name string) *Receive {
	return &Receive{Base: pipeline.NewBase(name, nil, receiveOutputs)}
}

// IsSystemFilter marks Receive as a pipeline.SystemFilter.
func (r *Receive) IsSystemFilter() bool { return true }

func (r *Receive) Run(ctx context.Context, kwargs map[string]any) error {
	env, ok := kwargs[pipeline.ReservedEnvironment].(pipeline.Environment)
	if !ok {
		return core.NewWrongInputError("Receive requires an environment", nil)
	}
	r.Emit("results", env.Receive())
	return nil
}

// Dump serializes every kwarg except environment as a single record
// {system: {job, penchy-version, jvm-info}, data: kwargs} (spec.md §4.9's
// Dump). The system part does not identify the composition; job is set only
// when an environment is present. The record is emitted as out.record for a
// downstream Save/Send to persist or transmit.
type Dump struct {
	pipeline.Base

	jvmInfo string
}

var dumpOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "record", Types: []pipeline.TypeDesc{pipeline.Of(any(nil))}},
)

// NewDump builds a Dump SystemFilter. jvmInfo is a free-form description
// of the JVM under test (spec.md's "jvm-info"), typically `jvm.Path()`
// plus its options.
func NewDump(name, jvmInfo string) *Dump {
	return &Dump{Base: pipeline.NewBase(name, nil, dumpOutputs), jvmInfo: jvmInfo}
}

// IsSystemFilter marks Dump as a pipeline.SystemFilter.
func (d *Dump) IsSystemFilter() bool { return true }

func (d *Dump) Run(ctx context.Context, kwargs map[string]any) error {
	env, _ := kwargs[pipeline.ReservedEnvironment].(pipeline.Environment)
	data := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		if k == pipeline.ReservedEnvironment {
			continue
		}
		data[k] = v
	}
	system := map[string]any{
		"penchy-version": version,
		"jvm-info":       d.jvmInfo,
	}
	if env != nil {
		system["job"] = env.JobSource()
	}
	d.Emit("record", map[string]any{"system": system, "data": data})
	return nil
}

var saveInputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "filename", Types: []pipeline.TypeDesc{pipeline.Of("")}},
	pipeline.Field{Name: "data", Types: []pipeline.TypeDesc{pipeline.Of("")}},
)

// Save writes kwargs["data"] to kwargs["filename"], resolving a relative
// filename against the current composition's node setting path (spec.md
// §4.9's "relative destinations are resolved against
// current_composition.node_setting.path").
type Save struct {
	pipeline.Base
}

// NewSave builds a Save SystemFilter.
func NewSave(name string) *Save {
	return &Save{Base: pipeline.NewBase(name, saveInputs, nil)}
}

// IsSystemFilter marks Save as a pipeline.SystemFilter.
func (s *Save) IsSystemFilter() bool { return true }

func (s *Save) Run(ctx context.Context, kwargs map[string]any) error {
	filename, _ := kwargs["filename"].(string)
	data, _ := kwargs["data"].(string)
	if filename == "" {
		return core.NewWrongInputError("Save requires a filename", nil)
	}
	resolved := resolvePath(kwargs, filename)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return core.NewWrongInputError("failed to create destination directory", map[string]any{"cause": err.Error()})
	}
	if err := os.WriteFile(resolved, []byte(data), 0o644); err != nil { //nolint:gosec // result artifacts are not secrets
		return core.NewWrongInputError("failed to save file", map[string]any{"cause": err.Error()})
	}
	return nil
}

var backupInputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "source", Types: []pipeline.TypeDesc{pipeline.Of("")}},
	pipeline.Field{Name: "destination", Types: []pipeline.TypeDesc{pipeline.Of("")}},
)

// BackupFile copies kwargs["source"] to kwargs["destination"] (spec.md
// §4.9's Save/BackupFile), using otiai10/copy so directories are copied
// recursively the same as single files.
type BackupFile struct {
	pipeline.Base
}

// NewBackupFile builds a BackupFile SystemFilter.
func NewBackupFile(name string) *BackupFile {
	return &BackupFile{Base: pipeline.NewBase(name, backupInputs, nil)}
}

// IsSystemFilter marks BackupFile as a pipeline.SystemFilter.
func (b *BackupFile) IsSystemFilter() bool { return true }

func (b *BackupFile) Run(ctx context.Context, kwargs map[string]any) error {
	source, _ := kwargs["source"].(string)
	destination, _ := kwargs["destination"].(string)
	if source == "" || destination == "" {
		return core.NewWrongInputError("BackupFile requires source and destination", nil)
	}
	resolved := resolvePath(kwargs, destination)
	if err := copy.Copy(source, resolved); err != nil {
		return core.NewWrongInputError("failed to back up file", map[string]any{"cause": err.Error()})
	}
	return nil
}

func resolvePath(kwargs map[string]any, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	env, ok := kwargs[pipeline.ReservedEnvironment].(pipeline.Environment)
	if !ok {
		return path
	}
	base, ok := env.CurrentNodeBasepath()
	if !ok || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
