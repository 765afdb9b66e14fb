package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bpowers/assets"
)

type fileSummary struct {
	Name      string            `yaml:"name"`
	Header    headerSummary     `yaml:"header"`
	Types     []typeSummary     `yaml:"types"`
	Externals []externalSummary `yaml:"externals,omitempty"`
	Objects   []objectSummary   `yaml:"objects,omitempty"`
}

type headerSummary struct {
	Version          uint32 `yaml:"version"`
	HeaderSize       uint32 `yaml:"headerSize"`
	MetadataSize     uint32 `yaml:"metadataSize"`
	ObjectDataOffset uint32 `yaml:"objectDataOffset"`
	FileSize         uint32 `yaml:"fileSize"`
}

type typeSummary struct {
	Index      int32  `yaml:"index"`
	ClassID    int32  `yaml:"classID"`
	ScriptHash string `yaml:"scriptHash,omitempty"`
}

type externalSummary struct {
	FileIndex int32  `yaml:"fileIndex"`
	FileName  string `yaml:"fileName"`
	GUID      string `yaml:"guid,omitempty"`
}

type objectSummary struct {
	ID          int64  `yaml:"id"`
	Type        int32  `yaml:"type"`
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name,omitempty"`
	Offset      uint32 `yaml:"offset"`
	Size        uint32 `yaml:"size"`
	Fingerprint string `yaml:"fingerprint"`
	Script      string `yaml:"script,omitempty"`
}

func summarize(c *assets.Container) (fileSummary, error) {
	s := fileSummary{
		Name: c.Name(),
		Header: headerSummary{
			Version:          c.Header.Version,
			HeaderSize:       c.Header.HeaderSize,
			MetadataSize:     c.Header.MetadataSize,
			ObjectDataOffset: c.Header.ObjectDataOffset,
			FileSize:         c.Header.FileSize,
		},
	}
	for i, t := range c.Metadata.Types {
		ts := typeSummary{Index: int32(i), ClassID: t.ClassID}
		if t.IsScript() {
			ts.ScriptHash = t.ScriptHash.String()
		}
		s.Types = append(s.Types, ts)
	}
	for i, e := range c.Metadata.Externals {
		es := externalSummary{FileIndex: int32(i + 1), FileName: e.FileName}
		if e.GUID != uuid.Nil {
			es.GUID = e.GUID.String()
		}
		s.Externals = append(s.Externals, es)
	}
	for _, obj := range c.Objects() {
		info := obj.Info()
		fp, err := assets.Fingerprint(obj)
		if err != nil {
			return fileSummary{}, fmt.Errorf("object %d: %w", info.ObjectID, err)
		}
		entry := objectSummary{
			ID:          info.ObjectID,
			Type:        info.TypeIndex,
			Offset:      info.DataOffset,
			Size:        info.DataSize,
			Fingerprint: fmt.Sprintf("%016x", fp),
		}
		switch o := obj.(type) {
		case *assets.AudioClipObject:
			entry.Kind = "AudioClip"
			entry.Name = o.Name
		case *assets.MonoBehaviourObject:
			entry.Kind = "MonoBehaviour"
			entry.Name = o.Name
			entry.Script = describePointer(c, o.Script)
		default:
			entry.Kind = "Opaque"
		}
		s.Objects = append(s.Objects, entry)
	}
	return s, nil
}

// describePointer names the file a pointer refers into, so script
// references read as "globalgamemanagers.assets:644".
func describePointer(c *assets.Container, p assets.Pointer) string {
	if p.IsNull() {
		return ""
	}
	name, ok := c.NameForFileIndex(p.FileIndex)
	if !ok || name == "" {
		return p.String()
	}
	return fmt.Sprintf("%s:%d", name, p.ObjectID)
}
