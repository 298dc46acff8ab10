// Package watch keeps the module registry in step with the mock directory.
//
// A Coordinator performs the initial scan and then applies filesystem
// events from a Source one at a time:
//
//	add, change  -> load the module and upsert it (remove it if loading fails)
//	unlink       -> remove the module
//	addDir       -> nothing; the files inside arrive as add events
//	unlinkDir    -> remove every module below the directory, then rescan
//
// Loader temporary artifacts and paths matching an ignore glob never reach
// the registry. FSNotifySource is the Source used outside of tests.
package watch
