// Package extractor 使用语言模型从剧本文本中抽取人物、地点和事件。
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/llm"
	"scribe-eye-go/pkg/log"
)

const instructions = `You are an expert in literary analysis. Analyze the script content provided by the user and extract the key entities.
Return a JSON object with the keys "characters", "locations" and "events". Every item needs a name and a short description.
Put any other facts about an item (age, role, time of day, ...) into "attributes" as key/value pairs.
Use empty arrays for categories with no entities.`

// Attribute 是一个键值对。严格 JSON schema 不允许自由对象，因此属性以数组形式返回。
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExtractedItem 是模型返回的单个实体。
type ExtractedItem struct {
	Name        string      `json:"name" jsonschema_description:"Name of the entity"`
	Description string      `json:"description" jsonschema_description:"One or two sentence description"`
	Attributes  []Attribute `json:"attributes" jsonschema_description:"Additional facts as key/value pairs"`
}

// ExtractedEntities 是抽取调用的固定输出结构。
type ExtractedEntities struct {
	Characters []ExtractedItem `json:"characters" jsonschema_description:"List of characters, with name and description"`
	Locations  []ExtractedItem `json:"locations" jsonschema_description:"List of locations, with name and description"`
	Events     []ExtractedItem `json:"events" jsonschema_description:"List of key events, with name and description"`
}

// EntityRepository 是抽取结果的存储，ReplaceForScript 必须原子地替换 scriptID 下的全部实体。
type EntityRepository interface {
	ReplaceForScript(ctx context.Context, scriptID string, entities []model.Entity) error
}

// Extractor 负责调用模型并替换剧本的实体集合。
type Extractor struct {
	client llm.StructuredClient
	repo   EntityRepository
	schema map[string]interface{}
	now    func() time.Time
}

func New(client llm.StructuredClient, repo EntityRepository) *Extractor {
	return &Extractor{
		client: client,
		repo:   repo,
		schema: llm.GenerateSchema[ExtractedEntities](),
		now:    time.Now,
	}
}

// Extract 对文本执行一次结构化抽取。输出缺少任一类别时返回 ErrMalformedExtraction。
func (e *Extractor) Extract(ctx context.Context, text string) (*ExtractedEntities, error) {
	var out ExtractedEntities
	err := e.client.GenerateStructured(ctx, llm.StructuredRequest{
		Name:         "extracted_entities",
		Description:  "Characters, locations and events found in a script",
		Instructions: instructions,
		Input:        "SCRIPT:\n" + text,
		Schema:       e.schema,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Characters == nil || out.Locations == nil || out.Events == nil {
		return nil, apperrors.New(apperrors.ErrMalformedExtraction,
			`extraction output must contain "characters", "locations" and "events" arrays`)
	}
	return &out, nil
}

// ExtractAndStore 抽取实体并替换 documentID 下已有的实体。空文本不做任何事。
//
// 新结果为空时旧实体同样会被清除，剧本的实体集合总是反映最近一次抽取。
func (e *Extractor) ExtractAndStore(ctx context.Context, documentID, projectID, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	logger := log.With("script_id", documentID, "project_id", projectID)

	extracted, err := e.Extract(ctx, text)
	if err != nil {
		logger.Errorf("[Extractor] 实体抽取失败: %v", err)
		return 0, fmt.Errorf("extract entities of script %s: %w", documentID, err)
	}

	entities := e.toEntities(extracted, documentID, projectID)
	if err := e.repo.ReplaceForScript(ctx, documentID, entities); err != nil {
		logger.Errorf("[Extractor] 保存实体失败: %v", err)
		return 0, fmt.Errorf("store entities of script %s: %w", documentID, err)
	}
	logger.Infof("[Extractor] 保存了 %d 个实体", len(entities))
	return len(entities), nil
}

// Clear 删除 documentID 下的全部实体。
func (e *Extractor) Clear(ctx context.Context, documentID string) error {
	if err := e.repo.ReplaceForScript(ctx, documentID, nil); err != nil {
		return fmt.Errorf("clear entities of script %s: %w", documentID, err)
	}
	return nil
}

func (e *Extractor) toEntities(x *ExtractedEntities, documentID, projectID string) []model.Entity {
	now := e.now().UTC()
	entities := make([]model.Entity, 0, len(x.Characters)+len(x.Locations)+len(x.Events))
	groups := []struct {
		typ   model.EntityType
		items []ExtractedItem
	}{
		{model.EntityTypeCharacter, x.Characters},
		{model.EntityTypeLocation, x.Locations},
		{model.EntityTypeEvent, x.Events},
	}
	for _, g := range groups {
		for _, item := range g.items {
			name := strings.TrimSpace(item.Name)
			if name == "" {
				continue
			}
			attrs := make(map[string]interface{}, len(item.Attributes))
			for _, a := range item.Attributes {
				if a.Key != "" {
					attrs[a.Key] = a.Value
				}
			}
			entities = append(entities, model.Entity{
				ProjectID:   projectID,
				ScriptID:    documentID,
				Type:        g.typ,
				Name:        name,
				Description: item.Description,
				Attributes:  attrs,
				CreatedAt:   now,
			})
		}
	}
	return entities
}
