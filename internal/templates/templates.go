// Package templates embeds the mail templates and layouts shipped with
// this deployment, for use with pkg/mailer.NewRenderer.
package templates

import "embed"

//go:embed onboarding.md layouts/base.html
var FS embed.FS
