package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/internal/service"
	"scribe-eye-go/pkg/log"
)

// importSeedScripts 把 dir/<项目名>/*.txt 导入为项目和剧本（幂等）。
// 已存在的同名项目会被复用，项目内已存在的同名剧本会被跳过。
func importSeedScripts(ctx context.Context, dir string, projects service.ProjectService, scripts service.ScriptService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("importSeedScripts: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("importSeedScripts: 读取目录失败: %v", err)
		return
	}

	existing, err := projects.List(ctx)
	if err != nil {
		log.Warnf("importSeedScripts: 获取项目列表失败: %v", err)
		return
	}
	byTitle := make(map[string]*model.Project, len(existing))
	for i := range existing {
		byTitle[existing[i].Title] = &existing[i]
	}

	for _, entry := range entries {
		if !entry.IsDir() || ctx.Err() != nil {
			continue
		}
		project, ok := byTitle[entry.Name()]
		if !ok {
			project, err = projects.Create(ctx, entry.Name(), "imported from "+dir)
			if err != nil {
				log.Warnf("importSeedScripts: 创建项目失败: %s, err=%v", entry.Name(), err)
				continue
			}
		}
		importProjectDir(ctx, filepath.Join(dir, entry.Name()), project, scripts)
	}
}

func importProjectDir(ctx context.Context, dir string, project *model.Project, scripts service.ScriptService) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		log.Warnf("importSeedScripts: 匹配文件失败: %s, err=%v", dir, err)
		return
	}
	sort.Strings(files)

	current, err := scripts.ListByProject(ctx, project.ID)
	if err != nil {
		log.Warnf("importSeedScripts: 获取剧本列表失败: %s, err=%v", project.Title, err)
		return
	}
	seen := make(map[string]bool, len(current))
	for _, s := range current {
		seen[s.Title] = true
	}

	for _, path := range files {
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if seen[title] {
			log.Infof("importSeedScripts: 已存在，跳过: %s/%s", project.Title, title)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("importSeedScripts: 读取文件失败: %s, err=%v", path, err)
			continue
		}
		if _, err := scripts.Create(ctx, project.ID, title, string(content)); err != nil {
			log.Warnf("importSeedScripts: 导入失败: %s, err=%v", path, err)
			continue
		}
		log.Infof("importSeedScripts: 导入完成并已触发索引: %s/%s", project.Title, title)
	}
}
