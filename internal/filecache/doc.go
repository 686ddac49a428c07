// Package filecache 实现远端对象存储之上的本地磁盘缓存引擎。
//
// 每个 key 对应一个带锁的 entry，状态只能沿
// INITIALIZED → DOWNLOADING → {IN_CACHE | ERROR} → EVICTING →
// EVICTING_DOWNLOADS_COMPLETE → EVICTED 单调前进。读取、下载、上传与淘汰
// 只在 entry 锁内做状态检查与修改，所有 I/O 都在锁外进行。
package filecache
