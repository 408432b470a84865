package model

import (
	"bufio"
	"encoding/gob"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

const (
	// ArtifactFormat はアーティファクトファイルの識別子
	ArtifactFormat = "mlpipe-artifact"
	// ArtifactVersion はエンベロープのバージョン
	ArtifactVersion = 1
)

// ArtifactKind はアーティファクトの種類を表す
type ArtifactKind string

const (
	KindPreprocessor ArtifactKind = "preprocessor"
	KindModel        ArtifactKind = "model"
)

// Artifact は永続化されたオブジェクトの自己記述的なエンベロープ。
// Payload の具象型は gob.Register で登録されている必要がある。
type Artifact struct {
	Format    string
	Version   int
	Kind      ArtifactKind
	Name      string
	RunID     string
	CreatedAt time.Time
	Payload   interface{}
}

// NewArtifact はヘッダーを埋めたエンベロープを作成する
func NewArtifact(kind ArtifactKind, name, runID string, payload interface{}) *Artifact {
	return &Artifact{
		Format:    ArtifactFormat,
		Version:   ArtifactVersion,
		Kind:      kind,
		Name:      name,
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// EncodeArtifact はアーティファクトを w に書き出す
func EncodeArtifact(w io.Writer, a *Artifact) error {
	if a == nil || a.Payload == nil {
		return errors.NewValueError("model.EncodeArtifact", "artifact has no payload")
	}
	if err := gob.NewEncoder(w).Encode(a); err != nil {
		return errors.Wrap(err, "failed to encode artifact")
	}
	return nil
}

// DecodeArtifact は r からアーティファクトを読み込み、ヘッダーを検証する
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "failed to decode artifact")
	}
	if a.Format != ArtifactFormat {
		return nil, errors.Newf("not an artifact file (format %q)", a.Format)
	}
	if a.Version != ArtifactVersion {
		return nil, errors.Newf("unsupported artifact version %d", a.Version)
	}
	if a.Payload == nil {
		return nil, errors.New("artifact has no payload")
	}
	return &a, nil
}

// SaveArtifact はアーティファクトを path に保存する。
// 同じディレクトリの一時ファイルに書いてから rename するので、途中の状態は残らない。
func SaveArtifact(path string, a *Artifact) (err error) {
	const op = "model.SaveArtifact"
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapKind(err, errors.KindPersistence, op, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WrapKind(err, errors.KindPersistence, op, "create temp file for %s", path)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := EncodeArtifact(bw, a); err != nil {
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
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapKind(err, errors.KindPersistence, op, "rename to %s", path)
	}
	return nil
}

// LoadArtifact は path からアーティファクトを読み込む。
// ファイルが無ければ KindMissingInput、壊れていれば KindPersistence になる。
func LoadArtifact(path string) (*Artifact, error) {
	const op = "model.LoadArtifact"
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapKind(err, errors.KindMissingInput, op, "artifact %s not found", path)
		}
		return nil, errors.WrapKind(err, errors.KindIO, op, "open %s", path)
	}
	defer f.Close()

	a, err := DecodeArtifact(bufio.NewReader(f))
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindPersistence, op, "artifact %s is corrupt", path)
	}
	return a, nil
}
