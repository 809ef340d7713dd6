// Package notify sends cuedeck events to the freedesktop notification
// daemon over the D-Bus session bus.
//
// The Notifier decides what to send and rate-limits repeats; the Desktop
// client performs the org.freedesktop.Notifications.Notify call. Front ends
// hook the Notifier into console.Callbacks.OnError.
package notify
