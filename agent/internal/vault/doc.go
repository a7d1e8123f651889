// Package vault reads style sources from an Obsidian vault on disk.
//
// Layout, relative to the vault root:
//
//	<config_dir>/appearance.json            active theme, enabled snippets, base theme
//	<config_dir>/themes/<name>/theme.css    theme stylesheet
//	<config_dir>/themes/<name>/manifest.json  theme version
//	<config_dir>/snippets/<name>.css        snippet stylesheet
//
// The application's own stylesheet is not part of a vault; it is read from
// the files configured with WithBuiltinStyles.
//
// Vault implements watcher.Provider and watcher.Notifier. Its ColorScheme
// feeds the verification resolver.
package vault
