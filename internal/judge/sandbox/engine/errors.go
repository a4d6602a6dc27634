package engine

import appErr "ojcore/pkg/errors"

func errRequired(what string) error {
	return appErr.Newf(appErr.InvalidParams, "%s is required", what)
}

func errSandbox(err error, format string, args ...interface{}) error {
	return appErr.Wrapf(err, appErr.SandboxError, format, args...)
}
