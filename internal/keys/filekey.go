// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keys

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/fsutil"
)

// FileFormat identifies how a key file was interpreted.
type FileFormat int

const (
	FormatHashed     FileFormat = iota // SHA-256 of arbitrary content
	FormatXMLv1                        // KeePass XML 1.0, base64 data
	FormatXMLv2                        // KeePass XML 2.0, hex data with hash
	FormatFixedBinary                  // exactly 32 raw bytes
	FormatFixedHex                     // exactly 64 hex characters
)

func (f FileFormat) String() string {
	switch f {
	case FormatHashed:
		return "hashed"
	case FormatXMLv1:
		return "xml-v1"
	case FormatXMLv2:
		return "xml-v2"
	case FormatFixedBinary:
		return "fixed-binary"
	case FormatFixedHex:
		return "fixed-hex"
	default:
		return "unknown"
	}
}

// Legacy reports whether the format is kept only for compatibility.
func (f FileFormat) Legacy() bool {
	return f == FormatXMLv1 || f == FormatFixedBinary || f == FormatFixedHex
}

var (
	// ErrEmptyKeyFile indicates the key file has no content
	ErrEmptyKeyFile = errors.New("key file is empty")

	// ErrKeyFileHash indicates the XML 2.0 data does not match its hash attribute
	ErrKeyFileHash = errors.New("key file data does not match its hash")
)

// FileKey is a factor derived from the contents of a key file.
type FileKey struct {
	raw    *crypto.Secret
	format FileFormat
	path   string
}

func (k *FileKey) UUID() uuid.UUID { return FileKeyUUID }
func (k *FileKey) Kind() Kind      { return KindFile }

func (k *FileKey) WithRawKey(fn func([]byte) error) error {
	return k.raw.WithBytes(fn)
}

// Format returns the detected file format.
func (k *FileKey) Format() FileFormat { return k.format }

// Path returns the file the key was loaded from.
func (k *FileKey) Path() string { return k.path }

// Destroy zeroes the derived key.
func (k *FileKey) Destroy() { k.raw.Destroy() }

// LoadFileKey reads and interprets a key file.
func LoadFileKey(path string) (*FileKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer crypto.ZeroBytes(data)

	raw, format, err := ParseFileKey(data)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(raw)

	return &FileKey{raw: crypto.NewSecret(raw), format: format, path: path}, nil
}

// ParseFileKey derives the 32-byte factor key from key file content.
// Caller is responsible for zeroing the returned key.
func ParseFileKey(data []byte) ([]byte, FileFormat, error) {
	if len(data) == 0 {
		return nil, 0, ErrEmptyKeyFile
	}

	if looksLikeXML(data) {
		raw, format, err := parseXMLKeyFile(data)
		if errors.Is(err, ErrKeyFileHash) {
			return nil, 0, err
		}
		if err == nil {
			return raw, format, nil
		}
		// Malformed XML is treated as an arbitrary file.
	}

	if len(data) == 32 {
		raw := make([]byte, 32)
		copy(raw, data)
		return raw, FormatFixedBinary, nil
	}

	if len(data) == 64 {
		if raw, err := hex.DecodeString(string(data)); err == nil {
			return raw, FormatFixedHex, nil
		}
	}

	sum := sha256.Sum256(data)
	return sum[:], FormatHashed, nil
}

type xmlKeyFile struct {
	XMLName xml.Name `xml:"KeyFile"`
	Meta    struct {
		Version string `xml:"Version"`
	} `xml:"Meta"`
	Key struct {
		Data struct {
			Hash  string `xml:"Hash,attr"`
			Value string `xml:",chardata"`
		} `xml:"Data"`
	} `xml:"Key"`
}

func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<KeyFile"))
}

func parseXMLKeyFile(data []byte) ([]byte, FileFormat, error) {
	var doc xmlKeyFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to parse key file XML: %w", err)
	}

	value := strings.Join(strings.Fields(doc.Key.Data.Value), "")

	switch {
	case strings.HasPrefix(doc.Meta.Version, "1."):
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode key file data: %w", err)
		}
		return normalizeKeyData(decoded), FormatXMLv1, nil

	case strings.HasPrefix(doc.Meta.Version, "2."):
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode key file data: %w", err)
		}
		if doc.Key.Data.Hash != "" {
			sum := sha256.Sum256(decoded)
			if !strings.EqualFold(hex.EncodeToString(sum[:4]), doc.Key.Data.Hash) {
				return nil, 0, ErrKeyFileHash
			}
		}
		return normalizeKeyData(decoded), FormatXMLv2, nil

	default:
		return nil, 0, fmt.Errorf("unsupported key file version %q", doc.Meta.Version)
	}
}

// normalizeKeyData uses 32-byte data directly and hashes anything else.
func normalizeKeyData(data []byte) []byte {
	if len(data) == 32 {
		return data
	}
	sum := sha256.Sum256(data)
	crypto.ZeroBytes(data)
	return sum[:]
}

// CreateKeyFile writes a new random XML 2.0 key file. Existing files are never overwritten.
func CreateKeyFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}

	data, err := crypto.RandomBytes(32)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(data)

	content := FormatXMLv2KeyFile(data)
	defer crypto.ZeroBytes(content)

	if err := fsutil.WriteFile(path, content); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// FormatXMLv2KeyFile renders key data as a KeePass XML 2.0 key file.
func FormatXMLv2KeyFile(data []byte) []byte {
	sum := sha256.Sum256(data)
	hexData := strings.ToUpper(hex.EncodeToString(data))

	var lines []string
	var groups []string
	for i := 0; i < len(hexData); i += 8 {
		end := min(i+8, len(hexData))
		groups = append(groups, hexData[i:end])
		if len(groups) == 4 {
			lines = append(lines, strings.Join(groups, " "))
			groups = nil
		}
	}
	if len(groups) > 0 {
		lines = append(lines, strings.Join(groups, " "))
	}

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<KeyFile>\n")
	b.WriteString("    <Meta>\n")
	b.WriteString("        <Version>2.0</Version>\n")
	b.WriteString("    </Meta>\n")
	b.WriteString("    <Key>\n")
	fmt.Fprintf(&b, "        <Data Hash=\"%s\">\n", strings.ToUpper(hex.EncodeToString(sum[:4])))
	for _, line := range lines {
		b.WriteString("            " + line + "\n")
	}
	b.WriteString("        </Data>\n")
	b.WriteString("    </Key>\n")
	b.WriteString("</KeyFile>\n")
	return []byte(b.String())
}
