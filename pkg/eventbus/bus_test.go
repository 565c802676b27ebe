package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New[int](4)
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	assert.Equal(t, 2, b.Publish(7))
	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)

	cancel1()
	cancel1() // 重复取消无副作用
	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 1, b.Len())
}

func TestBus_DropsOldestWhenFull(t *testing.T) {
	b := New[int](1)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)

	require.Len(t, ch, 1)
	assert.Equal(t, 3, <-ch, "只保留最新状态")
}

func TestBus_Close(t *testing.T) {
	b := New[string](0)
	ch, cancel := b.Subscribe()
	b.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	late, _ := b.Subscribe()
	_, open = <-late
	assert.False(t, open, "关闭后订阅得到已关闭通道")
	assert.Zero(t, b.Publish("x"))
}
