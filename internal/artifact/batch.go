package artifact

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

type staged struct {
	tmp string
	dst string
}

// Batch writes a group of outputs all-or-nothing. Each Stage call writes a
// temporary file next to its destination; Commit renames them into place.
// If staging or committing fails, every temporary file and every destination
// already renamed by this batch is removed.
type Batch struct {
	staged    []staged
	committed []string
	done      bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// StageCSV stages t as a CSV file at path.
func (b *Batch) StageCSV(path string, t *dataset.Table) error {
	return b.stage(path, t.WriteCSV)
}

// StageArtifact stages a gob artifact at path.
func (b *Batch) StageArtifact(path string, a *model.Artifact) error {
	return b.stage(path, func(w io.Writer) error {
		return model.EncodeArtifact(w, a)
	})
}

// StageWriterTo stages whatever src writes, e.g. a rendered plot.
func (b *Batch) StageWriterTo(path string, src io.WriterTo) error {
	return b.stage(path, func(w io.Writer) error {
		_, err := src.WriteTo(w)
		return err
	})
}

func (b *Batch) stage(path string, write func(io.Writer) error) (err error) {
	const op = "artifact.Batch.Stage"
	if b.done {
		return errors.NewPipelineError(errors.KindPersistence, op, "batch already finished")
	}
	defer func() {
		if err != nil {
			b.Abort()
		}
	}()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapKind(err, errors.KindPersistence, op, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".staged-*")
	if err != nil {
		return errors.WrapKind(err, errors.KindPersistence, op, "stage %s", path)
	}
	b.staged = append(b.staged, staged{tmp: tmp.Name(), dst: path})

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return errors.WrapKind(err, errors.KindPersistence, op, "write %s", path)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return errors.WrapKind(err, errors.KindPersistence, op, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapKind(err, errors.KindPersistence, op, "close %s", path)
	}
	return nil
}

// Commit moves every staged file to its destination.
func (b *Batch) Commit() error {
	const op = "artifact.Batch.Commit"
	if b.done {
		return errors.NewPipelineError(errors.KindPersistence, op, "batch already finished")
	}
	for i, s := range b.staged {
		if err := os.Rename(s.tmp, s.dst); err != nil {
			b.staged = b.staged[i:]
			b.Abort()
			return errors.WrapKind(err, errors.KindPersistence, op, "commit %s", s.dst)
		}
		b.committed = append(b.committed, s.dst)
	}
	b.staged = nil
	b.done = true
	return nil
}

// Abort discards staged files and removes outputs this batch already committed.
// It is a no-op after a successful Commit.
func (b *Batch) Abort() {
	if b.done {
		return
	}
	for _, s := range b.staged {
		_ = os.Remove(s.tmp)
	}
	for _, dst := range b.committed {
		_ = os.Remove(dst)
	}
	b.staged, b.committed = nil, nil
	b.done = true
}

// Paths returns the destinations staged so far.
func (b *Batch) Paths() []string {
	out := make([]string, 0, len(b.staged)+len(b.committed))
	out = append(out, b.committed...)
	for _, s := range b.staged {
		out = append(out, s.dst)
	}
	return out
}
