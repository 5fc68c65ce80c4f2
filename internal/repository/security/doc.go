// Package security implements persistence for the panel state: the arming
// status, the alarm status and the sensor registry.
//
// Repository is the contract the decision engine depends on. MemoryRepository
// keeps everything in process, FileRepository stores a JSON snapshot on disk,
// RedisRepository and SQLRepository keep state in shared stores so several
// panel processes can be restarted without losing it.
package security
