package service

import (
	"MediaVault/config"
	"MediaVault/model"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// normalizeMIME strips parameters and lowercases a media type.
func normalizeMIME(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// kindOf maps a declared media type to an asset kind.
func kindOf(mime string) (model.AssetKind, bool) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return model.AssetKindImage, true
	case strings.HasPrefix(mime, "video/"):
		return model.AssetKindVideo, true
	}
	return "", false
}

func allowedTypes(policy config.MediaPolicy, kind model.AssetKind) []string {
	if kind == model.AssetKindVideo {
		return policy.VideoMIMETypes
	}
	return policy.ImageMIMETypes
}

func maxBytes(policy config.MediaPolicy, kind model.AssetKind) uint64 {
	if kind == model.AssetKindVideo {
		return policy.VideoMaxBytes
	}
	return policy.ImageMaxBytes
}

func containsMIME(list []string, mime string) bool {
	for _, m := range list {
		if normalizeMIME(m) == mime {
			return true
		}
	}
	return false
}

// sniffMIME detects the content type and checks it against the declared one.
// It returns the type to record for the asset.
func sniffMIME(r io.Reader, declared string, kind model.AssetKind, allowed []string) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("read content: %v", err)
	}
	if mt.Is(declared) {
		return declared, nil
	}
	for m := mt; m != nil; m = m.Parent() {
		detected := normalizeMIME(m.String())
		if k, ok := kindOf(detected); ok && k == kind && containsMIME(allowed, detected) {
			return detected, nil
		}
	}
	return "", fmt.Errorf("content looks like %s, not %s", mt.String(), declared)
}
