// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The package also adapts zap to the logger shapes other libraries expect,
// and to the plain log-writer callback the materializer consumes:
//
//	logger := logging.NewDefault()
//	logger.Info("Profile loaded", zap.String("profile", "acme/agent"))
//
//	retryClient.Logger = logging.NewLeveled(logger.Named("controlplane"))
//	write := logging.Writer(logger.Named("materialize"))
package logging
