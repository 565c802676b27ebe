package errors

import "errors"

// 跨模块共享的错误分类，各模块的具体错误通过 %w 包装它们
var (
	// ErrNotFound 按 CRN / 学科 / 课程 / 教师查找的对象不存在
	ErrNotFound = errors.New("对象不存在")
	// ErrNotReady 课程数据集尚未加载完成
	ErrNotReady = errors.New("课程数据尚未就绪")
	// ErrLoadFailure 课程数据集加载失败，需人工重新加载
	ErrLoadFailure = errors.New("课程数据加载失败")
)
