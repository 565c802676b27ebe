package repository_test

import (
	"context"
	"testing"

	"semester-planner/internal/model"
	"semester-planner/internal/repository"
)

// testKVContract 各 KVRepository 实现共用的行为校验
func testKVContract(t *testing.T, repo repository.KVRepository, key string) {
	t.Helper()
	ctx := context.Background()

	var crns []int
	found, err := repo.Get(ctx, key, &crns)
	if err != nil {
		t.Fatalf("读取不存在的 key 不应报错: %v", err)
	}
	if found {
		t.Fatal("期望 key 不存在")
	}

	if err := repo.Set(ctx, key, []int{300, 100}); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	// 覆盖写
	if err := repo.Set(ctx, key, []int{100, 150, 400}); err != nil {
		t.Fatalf("覆盖 Set 失败: %v", err)
	}

	found, err = repo.Get(ctx, key, &crns)
	if err != nil || !found {
		t.Fatalf("Get 失败: found=%v err=%v", found, err)
	}
	if len(crns) != 3 || crns[0] != 100 || crns[2] != 400 {
		t.Errorf("期望 [100 150 400], 实际 %v", crns)
	}

	var blocks []model.BlockOut
	if err := repo.Set(ctx, key+".blockOuts", []model.BlockOut{{ID: "a", Text: "Work", Start: "2024-03-12T15:00:00", End: "2024-03-12T16:00:00"}}); err != nil {
		t.Fatalf("Set 结构体失败: %v", err)
	}
	if found, err := repo.Get(ctx, key+".blockOuts", &blocks); err != nil || !found {
		t.Fatalf("Get 结构体失败: found=%v err=%v", found, err)
	}
	if len(blocks) != 1 || blocks[0].Text != "Work" {
		t.Errorf("期望一条 Work 时段, 实际 %+v", blocks)
	}

	if err := repo.Delete(ctx, key); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if err := repo.Delete(ctx, key+".blockOuts"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if found, _ := repo.Get(ctx, key, &crns); found {
		t.Error("删除后 key 不应存在")
	}
	if err := repo.Delete(ctx, key); err != nil {
		t.Errorf("删除不存在的 key 不应报错: %v", err)
	}
}

func TestMemoryKVRepo(t *testing.T) {
	testKVContract(t, repository.NewMemoryKVRepo(), "semesterService.sections")
}

func TestMemoryKVRepo_TypeMismatch(t *testing.T) {
	repo := repository.NewMemoryKVRepo()
	ctx := context.Background()

	if err := repo.Set(ctx, "k", "not-a-list"); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	var crns []int
	if _, err := repo.Get(ctx, "k", &crns); err == nil {
		t.Error("类型不匹配时期望返回错误")
	}
}

func TestMemoryKVRepo_UnmarshalableValue(t *testing.T) {
	repo := repository.NewMemoryKVRepo()
	if err := repo.Set(context.Background(), "k", make(chan int)); err == nil {
		t.Error("无法序列化的值期望返回错误")
	}
}

func TestNewMemoryRepository(t *testing.T) {
	repo := repository.NewMemoryRepository()
	if repo.KV == nil {
		t.Fatal("期望 KV 已初始化")
	}
}
