// Package remote 封装远端对象存储。生产环境使用阿里云 OSS，开发与测试可切换为
// 进程内的内存实现。所有实现都只按 key 读写整块对象。
package remote
