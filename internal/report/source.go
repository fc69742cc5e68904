package report

import (
	"bytes"
	"encoding/json"
)

// The engine tags each logfile source and each build target with the shape it
// was collected from. The known variants are matched explicitly; anything
// else degrades to a placeholder string so one malformed entry cannot abort
// the report. New variants must be added here, not absorbed by the fallthrough.

type sourceKind int

const (
	sourceUnknown sourceKind = iota
	// sourceRemoteRawFile is a plain remote file: {"RawFile":{"Remote":[prefix, path]}}.
	sourceRemoteRawFile
	// sourceRemoteArchiveMember is a member of a remote tarball:
	// {"TarFile":[{"Remote":[prefix, url]}, size, path]}.
	sourceRemoteArchiveMember
)

// sourceRef is the decoded tagged union of a logfile source.
type sourceRef struct {
	kind sourceKind
	// prefix is the byte length of the server prefix to strip from path.
	prefix int
	path   string
	raw    json.RawMessage
}

type rawRemote struct {
	Remote []json.RawMessage `json:"Remote"`
}

// decodeRemote extracts the (offset, path) pair of a Remote reference.
func decodeRemote(r rawRemote) (int, string, bool) {
	if len(r.Remote) != 2 {
		return 0, "", false
	}
	var pos int
	var path string
	if err := json.Unmarshal(r.Remote[0], &pos); err != nil {
		return 0, "", false
	}
	if err := json.Unmarshal(r.Remote[1], &path); err != nil {
		return 0, "", false
	}
	return pos, path, true
}

func decodeSource(raw json.RawMessage) sourceRef {
	var tagged struct {
		RawFile *rawRemote        `json:"RawFile"`
		TarFile []json.RawMessage `json:"TarFile"`
	}
	if err := json.Unmarshal(raw, &tagged); err == nil {
		switch {
		case tagged.RawFile != nil:
			if pos, path, ok := decodeRemote(*tagged.RawFile); ok {
				return sourceRef{kind: sourceRemoteRawFile, prefix: pos, path: path, raw: raw}
			}
		case len(tagged.TarFile) == 3:
			var member rawRemote
			var path string
			if json.Unmarshal(tagged.TarFile[0], &member) == nil &&
				json.Unmarshal(tagged.TarFile[2], &path) == nil {
				if pos, _, ok := decodeRemote(member); ok {
					return sourceRef{kind: sourceRemoteArchiveMember, prefix: pos, path: path, raw: raw}
				}
			}
		}
	}
	return sourceRef{kind: sourceUnknown, raw: raw}
}

// relative returns the archive- or server-relative path of the source.
func (s sourceRef) relative() string {
	switch s.kind {
	case sourceRemoteRawFile, sourceRemoteArchiveMember:
		if s.prefix >= 0 && s.prefix <= len(s.path) {
			return s.path[s.prefix:]
		}
		return s.path
	default:
		return "Unknown source: " + compactJSON(s.raw)
	}
}

// ResolveSource converts a tagged source structure into the human readable
// relative path used throughout the pipeline.
//
// {"RawFile":{"Remote":[12,"example.com/zuul/overcloud.log"]}} resolves to
// "zuul/overcloud.log".
func ResolveSource(raw json.RawMessage) string {
	return decodeSource(raw).relative()
}

// ResolveTarget converts a tagged target description into the job name.
//
// {"Zuul":{"job_name":"tox"}} resolves to "tox".
func ResolveTarget(raw json.RawMessage) string {
	var tagged struct {
		Zuul *struct {
			JobName string `json:"job_name"`
		} `json:"Zuul"`
	}
	if err := json.Unmarshal(raw, &tagged); err == nil && tagged.Zuul != nil {
		return tagged.Zuul.JobName
	}
	return "Unknown target: " + compactJSON(raw)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
