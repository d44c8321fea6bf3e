// Package logfile implements the LogCore collaborator that
// pkg/slotengine treats as an opaque interface: file-space reservation,
// rotation across numbered log files, and the single background writer
// that drains closed slots to disk.
//
// A Core owns one open [fs.File] at a time (the "current" log file) and
// hands out byte ranges within it via Acquire. When a reservation would
// overflow the configured file size, Acquire rotates to a new file first.
// Writers never touch the file directly: they call Write, which joins the
// active slot and copies into the slot buffer the engine gave them (the
// engine's Pool.New calls Acquire to give each newly promoted slot its
// space). A completed slot is flushed by whichever Write observes it Done,
// or by the background writer loop started by Run.
package logfile
