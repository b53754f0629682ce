// Package tasks 定义了剧本写入后投递给后台 worker 的任务。
package tasks

import (
	"context"
	"fmt"
)

// TaskType 区分两类相互独立的后台任务。
type TaskType string

const (
	TypeSyncDocument    TaskType = "sync_document"
	TypeExtractEntities TaskType = "extract_entities"
)

// ScriptTask 引用某个剧本某一版本的内容快照。
// 内容本身存放在对象存储里，ObjectKey 指向它。
type ScriptTask struct {
	Type      TaskType `json:"type"`
	ScriptID  string   `json:"script_id"`
	ProjectID string   `json:"project_id"`
	Version   uint     `json:"version"`
	ObjectKey string   `json:"object_key"`
}

// Key 唯一标识一次任务投递，用作失败计数的键。
func (t ScriptTask) Key() string {
	return fmt.Sprintf("%s:%s:%d", t.Type, t.ScriptID, t.Version)
}

// ForScript 为一次内容写入生成同步向量和抽取实体两个任务。
func ForScript(scriptID, projectID string, version uint, objectKey string) []ScriptTask {
	base := ScriptTask{ScriptID: scriptID, ProjectID: projectID, Version: version, ObjectKey: objectKey}
	syncTask, extractTask := base, base
	syncTask.Type = TypeSyncDocument
	extractTask.Type = TypeExtractEntities
	return []ScriptTask{syncTask, extractTask}
}

// Processor 处理单个任务。Kafka 消费者和进程内 worker pool 都依赖它。
type Processor interface {
	Process(ctx context.Context, task ScriptTask) error
}

// Enqueuer 投递任务，由 Kafka 生产者或进程内 worker pool 实现。
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...ScriptTask) error
}
