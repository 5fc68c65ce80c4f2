// Package watcher polls the panel server and logs every state transition.
package watcher
