/*
Package profile loads configuration profiles and keeps them fresh.

# Loaders

Every profile source implements Loader. Two variants exist:

  - PlatformLoader caches a raw document published on the control plane and
    refreshes it in the background every DefaultReloadInterval.
  - LocalLoader reads a YAML file from disk and re-reads it when the profile
    is activated.

# Platform refresh

Each refresh tick lists the control plane's assistants, picks the entry that
matches the loader's owner and package, renders its document and replaces
the cache. Ticks are numbered; a tick that finishes after a newer tick has
already committed is dropped rather than overwriting newer data. Failures
and panics inside a tick are logged and counted, and the previous cache is
kept.

LoadConfig never validates. If the cached result carries errors they are
returned as-is without materializing; otherwise the materializer runs and
any errors it reports are discarded.

# Usage

	loader, err := profile.NewPlatformLoader(profile.PlatformParams{
		Initial:     initial,
		OwnerSlug:   "acme",
		PackageSlug: "agent",
		VersionSlug: "1.0.0",
		Client:      client,
		IDE:         handle,
		Settings:    settings,
		LogWriter:   logging.Writer(logger),
		OnReload:    manager.OnReload,
	}, profile.WithLogger(logger), profile.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer loader.Close()
*/
package profile
