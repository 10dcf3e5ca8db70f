package readpack

import (
	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/scanner"
)

// checkSecretPath implements spec §7's ForbiddenFile rule: without
// allow_secrets, no path matching the secret heuristic may appear in a
// FileSlice or GrepContext section.
func checkSecretPath(relPath string, allowSecrets bool) error {
	if allowSecrets || !scanner.IsSensitivePath(relPath) {
		return nil
	}
	return amanerrors.New(
		amanerrors.ErrCodeForbiddenFile,
		"refusing to return "+relPath+": matches the secret/credential file heuristic; pass allow_secrets=true to override",
		nil,
	).WithDetail("path", relPath)
}
